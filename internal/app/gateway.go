package app

import (
	"context"
	"sync"

	"github.com/blackwell-systems/piptrack/internal/pip"
)

// lazyGateway resolves the pip command on first use, so commands that never
// run pip work on machines without it.
type lazyGateway struct {
	once    sync.Once
	resolve func() (pip.Gateway, error)
	gw      pip.Gateway
	err     error
}

func (l *lazyGateway) get() (pip.Gateway, error) {
	l.once.Do(func() { l.gw, l.err = l.resolve() })
	return l.gw, l.err
}

func (l *lazyGateway) Install(ctx context.Context, name string, upgrade bool) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.Install(ctx, name, upgrade)
}

func (l *lazyGateway) InstallPinned(ctx context.Context, name, version string) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.InstallPinned(ctx, name, version)
}

func (l *lazyGateway) Uninstall(ctx context.Context, name string) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.Uninstall(ctx, name)
}

func (l *lazyGateway) Show(ctx context.Context, name string) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.Show(ctx, name)
}

func (l *lazyGateway) ShowFiles(ctx context.Context, name string) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.ShowFiles(ctx, name)
}

func (l *lazyGateway) List(ctx context.Context) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.List(ctx)
}

func (l *lazyGateway) ListOutdated(ctx context.Context) (*pip.Result, error) {
	gw, err := l.get()
	if err != nil {
		return nil, err
	}
	return gw.ListOutdated(ctx)
}
