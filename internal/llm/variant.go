package llm

import (
	"errors"
	"fmt"

	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// NewCallers builds the request variants in configured order.
func NewCallers(cfg *config.Config) ([]extract.Caller, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	variants := cfg.Variants
	if len(variants) == 0 {
		variants = config.DefaultVariants(cfg.LLM)
	}

	callers := make([]extract.Caller, 0, len(variants))
	for i, v := range variants {
		var (
			c   extract.Caller
			err error
		)
		switch v.API {
		case config.APIChat:
			c, err = NewChatCaller(&cfg.LLM, v)
		case config.APIResponses:
			c, err = NewResponsesCaller(&cfg.LLM, v)
		default:
			err = fmt.Errorf("unknown api %q", v.API)
		}
		if err != nil {
			return nil, fmt.Errorf("variant %d (%s): %w", i, v.Label, err)
		}
		callers = append(callers, c)
	}
	if len(callers) == 0 {
		return nil, errors.New("no request variants configured")
	}
	return callers, nil
}
