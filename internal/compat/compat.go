// Package compat defines what the installer needs from a Windows
// compatibility layer.
package compat

//go:generate mockgen -destination=mock/mock_compat.go -package=mock . Runtime,GraphicsLayerInstaller

import (
	"context"
	"os/exec"
)

// Runtime runs Windows binaries and manages the prefix they run in.
type Runtime interface {
	// Command returns a command that runs binary inside the compatibility
	// layer. The command already carries Env.
	Command(ctx context.Context, binary string, args ...string) *exec.Cmd
	InstallFont(ctx context.Context, font string) error
	InstallPackage(ctx context.Context, name string) error
	Env() []string
}

// GraphicsLayerInstaller is implemented by runtimes that need a graphics
// translation layer copied into their prefix after it is downloaded.
type GraphicsLayerInstaller interface {
	InstallGraphicsLayer(ctx context.Context, dir string) error
}
