//go:build !darwin && !windows && !linux

package paste

type unsupported struct{}

// New returns an injector that always fails with ErrUnsupported.
func New() Injector { return unsupported{} }

func (unsupported) InjectPaste(string) error { return ErrUnsupported }
