package engine

import (
	"fmt"

	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// resolveFree returns the free parameter names in call stack order.
// A parameter is free when it is not fixed and declares distinct bounds.
func resolveFree(stack *CallStack, fixed map[string]bool) []string {
	free := make([]string, 0)
	for _, e := range stack.Entries {
		t := e.Task
		if t.Kind != KindParameter || fixed[t.Name] {
			continue
		}
		if t.MinValue == nil || t.MaxValue == nil || *t.MinValue == *t.MaxValue {
			continue
		}
		free = append(free, t.Name)
	}
	return free
}

// negotiate walks the stack in reverse and, for each task declaring requests,
// asks the consumer for every requested key and hands the answers to the
// producer behind the matching input.
func negotiate(stack *CallStack, modules map[string]Module, logger *telemetry.Logger) error {
	for i := len(stack.Entries) - 1; i >= 0; i-- {
		consumer := stack.Entries[i].Task
		if len(consumer.Requests) == 0 {
			continue
		}

		for j, input := range consumer.Inputs {
			if _, ok := stack.Lookup(input); !ok {
				return NewConfigError(fmt.Sprintf("input %q does not name any task", input), nil).
					WithCode(ErrCodeUnresolvedInput).WithTask(consumer.Name).WithOperation("negotiate")
			}
			if j >= len(consumer.Requests) || len(consumer.Requests[j]) == 0 {
				continue
			}

			requests := make(map[string]any, len(consumer.Requests[j]))
			asker, _ := modules[consumer.Name].(Requester)
			for _, key := range consumer.Requests[j] {
				var value any
				if asker != nil {
					value = asker.Request(key)
				}
				requests[key] = value
			}

			handler, ok := modules[input].(RequestHandler)
			if !ok {
				logger.Zerolog().Debug().
					Str("consumer", consumer.Name).
					Str("producer", input).
					Msg("producer ignores requests")
				continue
			}
			if err := handler.HandleRequests(requests); err != nil {
				return NewConfigError("producer rejected requests", err).
					WithCode(ErrCodeNegotiation).WithTask(input).WithOperation("negotiate").
					WithDetail("consumer", consumer.Name)
			}
			logger.Zerolog().Debug().
				Str("consumer", consumer.Name).
				Str("producer", input).
				Strs("keys", consumer.Requests[j]).
				Msg("delivered requests")
		}
	}
	return nil
}
