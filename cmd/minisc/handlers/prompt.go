package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/cluster"
)

// joinCommandHint tells the operator how to get a token from the head node.
const joinCommandHint = "sudo kubeadm token create --print-join-command"

var (
	// promptToken asks the operator for the join token.
	promptToken = func(ctx context.Context, head cloud.ProvisionedNode) (string, error) {
		var token string
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Join Token").
					Description(fmt.Sprintf("Run %q on %s and paste the token", joinCommandHint, head.Address())).
					Placeholder("abcdef.0123456789abcdef").
					Value(&token).
					Validate(validateToken),
			).Title("Worker Nodes"),
		).RunWithContext(ctx)
		return token, err
	}

	// confirm asks a yes/no question.
	confirm = func(ctx context.Context, title, description string) (bool, error) {
		var ok bool
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(title).
					Description(description).
					Affirmative("Yes").
					Negative("No").
					Value(&ok),
			),
		).RunWithContext(ctx)
		return ok, err
	}
)

func validateToken(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("join token is required")
	}
	return nil
}

// tokenSource picks where the join token comes from: the flag, an
// interactive prompt, or nowhere.
func tokenSource(flagToken string) cluster.TokenSource {
	if flagToken != "" {
		return cluster.StaticToken(cloud.JoinToken(flagToken))
	}
	return func(ctx context.Context, head cloud.ProvisionedNode) (cloud.JoinToken, error) {
		if !stdinIsTerminal() {
			return "", fmt.Errorf("%w: pass --join-token (get one with %q on %s)", cluster.ErrNoToken, joinCommandHint, head.Address())
		}
		token, err := promptToken(ctx, head)
		if err != nil {
			return "", err
		}
		return cloud.JoinToken(strings.TrimSpace(token)), nil
	}
}
