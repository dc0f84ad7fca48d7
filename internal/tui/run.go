package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"feedtrack/internal/client/app"
)

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, session *app.Session, logger *zap.Logger) error {
	p := tea.NewProgram(New(ctx, session, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
