//go:build !linux

package ioloop

import (
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/types"
)

// unsupportedReactor reports OsError for every call except close (a
// no-op), so IoEventLoopService
// still compiles and fails loudly on platforms the spec's epoll reactor
// was never meant to run on. The production target is Linux (spec.md §1).
type unsupportedReactor struct{}

func newPlatformReactor() reactor { return unsupportedReactor{} }

func unsupported() error {
	return engineerr.New(engineerr.OsError, "epoll reactor is only supported on linux", types.NewDict())
}

func (unsupportedReactor) create() error                             { return unsupported() }
func (unsupportedReactor) addFd(int, AddOptions) error               { return unsupported() }
func (unsupportedReactor) removeFd(int) error                        { return unsupported() }
func (unsupportedReactor) writeToFd(int, []byte) error               { return unsupported() }
func (unsupportedReactor) readFromFd(int) ([]byte, error)            { return nil, unsupported() }
func (unsupportedReactor) poll() ([]readyEvent, error)                { return nil, unsupported() }
func (unsupportedReactor) close() error                              { return nil }
