package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/corretor-crm/corretor/pkg/flow"
)

const intentPrompt = `Você classifica a intenção de mensagens de clientes de uma imobiliária.
Responda apenas com uma das intenções abaixo, exatamente como escrita, ou "nenhuma" se nenhuma se aplicar.
Intenções: %s`

// IntentResolver classifies user input with the LLM. It implements
// flow.IntentResolver.
type IntentResolver struct {
	completer Completer
}

var _ flow.IntentResolver = (*IntentResolver)(nil)

func NewIntentResolver(completer Completer) *IntentResolver {
	return &IntentResolver{completer: completer}
}

// ResolveIntent returns one of intents, or "" when the model picks none or
// answers something outside the list.
func (r *IntentResolver) ResolveIntent(ctx context.Context, text string, intents []string) (string, error) {
	if len(intents) == 0 {
		return "", nil
	}

	answer, err := r.completer.Complete(ctx, Request{
		System:      fmt.Sprintf(intentPrompt, strings.Join(intents, ", ")),
		Messages:    []Message{{Role: RoleUser, Content: text}},
		MaxTokens:   20,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	answer = flow.Fold(strings.Trim(answer, " .\"'\n"))

	for _, intent := range intents {
		if flow.Fold(intent) == answer {
			return intent, nil
		}
	}

	return "", nil
}
