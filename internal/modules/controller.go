package modules

import (
	"errors"
	"fmt"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/module"
	logx "smartmirror/pkg/logx"
)

// Controller applies loop-level commands sent as PyMirrorEvent:
//
//	{"event":"PyMirrorEvent","debug":"on","refresh":true,"remote_display":false}
//
// "enable" and "disable" name a module to toggle. "error" makes the handler
// fail, which puts the diagnostic screen up.
type Controller struct {
	*module.Base
	host module.Host
}

func NewController(env module.Env, def config.ModuleConfig) (module.Module, error) {
	if env.Host == nil {
		return nil, errors.New("controller: no host")
	}
	var cfg struct{}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	c := &Controller{Base: base, host: env.Host}
	c.On(ControlEvent, c.onControl)
	return c, nil
}

func (c *Controller) onControl(e eventbus.Event) error {
	c.Log.Debug("control event", logx.Strs("keys", e.Keys()))
	if v, ok := e.Get("debug"); ok {
		if on, ok := flag(v); ok {
			c.host.SetDebug(on)
			c.host.RequestFullRender()
			c.Log.Info("debug overlay", logx.Bool("enabled", on))
		}
	}
	if v, ok := e.Get("refresh"); ok {
		if on, _ := flag(v); on {
			c.host.RequestFullRender()
		}
	}
	if v, ok := e.Get("remote_display"); ok {
		if on, ok := flag(v); ok {
			c.host.SetRemoteDisplay(on)
		}
	}
	if name := e.String("enable"); name != "" {
		if err := c.host.SetModuleEnabled(name, true); err != nil {
			c.Log.Warn("enable failed", logx.Err(err))
		}
	}
	if name := e.String("disable"); name != "" {
		if err := c.host.SetModuleEnabled(name, false); err != nil {
			c.Log.Warn("disable failed", logx.Err(err))
		}
	}
	if v, ok := e.Get("error"); ok && v != nil {
		return fmt.Errorf("controller received error event: %v", v)
	}
	return nil
}

func (c *Controller) Evaluate() (bool, error) { return false, nil }
func (c *Controller) Render(bool) error       { return nil }
