package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/reactor/internal/diff"
	"github.com/GriffinCanCode/reactor/internal/dom"
	"github.com/GriffinCanCode/reactor/internal/protocol"
	"github.com/GriffinCanCode/reactor/internal/registry"
)

func (r *Router) render(_ string, payload json.RawMessage) error {
	var p protocol.Render
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	// a render queued before a disconnect must not touch the rejoined baseline
	gen := r.components.Generation()
	r.frames.RequestFrame(func() {
		if r.components.Generation() != gen {
			r.logger.Debug("render from a closed connection dropped", zap.String("id", p.ID))
			return
		}
		err := r.components.Render(p.ID, p.Diff)
		var violation *diff.ProtocolViolation
		switch {
		case err == nil:
		case errors.Is(err, registry.ErrUnknownComponent):
			r.logger.Debug("render for unmounted component ignored", zap.String("id", p.ID))
		case errors.As(err, &violation):
			r.logger.Warn("protocol violation", zap.String("kind", "diff"), zap.String("id", p.ID), zap.Error(err))
		default:
			r.logger.Error("render failed", zap.String("id", p.ID), zap.Error(err))
		}
	})
	return nil
}

func (r *Router) insert(command string, payload json.RawMessage) error {
	var p protocol.Insert
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	r.frames.RequestFrame(func() {
		target := r.doc.ByID(p.ID)
		if target == nil {
			r.logger.Debug("insert target missing", zap.String("command", command), zap.String("id", p.ID))
			return
		}
		node, err := dom.ParseFirst(p.HTML)
		if err != nil {
			r.logger.Warn("insert markup rejected", zap.String("command", command), zap.String("id", p.ID), zap.Error(err))
			return
		}

		switch command {
		case protocol.CommandAppend:
			dom.Append(target, node)
		case protocol.CommandPrepend:
			dom.Prepend(target, node)
		case protocol.CommandInsertAfter:
			dom.InsertAfter(target, node)
		case protocol.CommandInsertBefore:
			dom.InsertBefore(target, node)
		case protocol.CommandReplaceWith:
			dom.ReplaceWith(target, node)
		}
		r.components.Reconcile(node.Parent)
	})
	return nil
}

func (r *Router) remove(_ string, payload json.RawMessage) error {
	var p protocol.Remove
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	r.frames.RequestFrame(func() {
		target := r.doc.ByID(p.ID)
		if target == nil {
			return
		}
		parent := target.Parent
		dom.Detach(target)
		r.components.Reconcile(parent)
	})
	return nil
}

func (r *Router) focusOn(_ string, payload json.RawMessage) error {
	var p protocol.FocusOn
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	r.frames.RequestFrame(func() {
		if n := r.doc.QuerySelector(nil, p.Selector); n != nil {
			r.doc.Focus(n)
		}
	})
	return nil
}

func (r *Router) scrollIntoView(_ string, payload json.RawMessage) error {
	var p protocol.ScrollIntoView
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	r.frames.RequestFrame(func() {
		if n := r.doc.ByID(p.ID); n != nil {
			r.doc.ScrollIntoView(n, dom.ScrollOptions{Behavior: p.Behavior, Block: p.Block, Inline: p.Inline})
		}
	})
	return nil
}

func (r *Router) urlChange(_ string, payload json.RawMessage) error {
	var p protocol.URLChange
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	switch p.Command {
	case protocol.URLRedirect:
		r.navigator.Load(p.URL)
		return nil
	case protocol.URLReplace:
		return r.navigator.Replace(p.URL)
	case protocol.URLPush:
		return r.navigator.Push(p.URL)
	default:
		return fmt.Errorf("%w %q", ErrUnknownURLCommand, p.Command)
	}
}

func (r *Router) setQueryString(_ string, payload json.RawMessage) error {
	var p protocol.QueryString
	if err := protocol.DecodePayload(payload, &p); err != nil {
		return err
	}
	r.navigator.SetQueryString(p.QS)
	return nil
}

func (r *Router) setURLParams(_ string, payload json.RawMessage) error {
	params := map[string]interface{}{}
	if err := protocol.DecodePayload(payload, &params); err != nil {
		return err
	}
	r.navigator.MergeURLParams(params)
	return nil
}

func (r *Router) back(_ string, _ json.RawMessage) error {
	r.navigator.Back()
	return nil
}
