package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/session"
)

const (
	commandOn     = "on"
	commandOff    = "off"
	commandToggle = "toggle"
	commandPlay   = "play"
	commandState  = "state"
)

// parseCommand maps an operator command to an event; "state" maps to
// no event.
func parseCommand(line string, current session.Session) (session.Event, error) {
	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case commandOn:
		return session.EventMicOn{}, nil
	case commandOff:
		return session.EventMicOff{}, nil
	case commandToggle:
		if current.State == session.StateRecording {
			return session.EventMicOff{}, nil
		}
		return session.EventMicOn{}, nil
	case commandPlay:
		return session.EventPlayToggle{}, nil
	case commandState, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command '%s', expected one of: on, off, toggle, play, state", cmd)
	}
}

type status struct {
	State string `json:"state"`
	Clip  string `json:"clip,omitempty"`
}

func readCommands(
	ctx context.Context,
	r io.Reader,
	controller *session.Controller,
	channel capability.ControlChannel,
) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		ev, err := parseCommand(line, controller.Snapshot())
		if err != nil {
			logger.Errorf(ctx, "%v", err)
			continue
		}
		if ev != nil {
			if err := controller.Enqueue(ctx, ev); err != nil {
				logger.Errorf(ctx, "unable to enqueue %s: %v", ev, err)
				return
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		st := status{State: controller.Snapshot().State.String()}
		if c := controller.Clip(); c != nil {
			st.Clip = c.ID().String()
		}
		logger.Infof(ctx, "state: %s, clip: %s", st.State, st.Clip)
		if err := channel.Send(ctx, "status", st); err != nil {
			logger.Debugf(ctx, "unable to send the status: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Errorf(ctx, "unable to read the commands: %v", err)
	}
}
