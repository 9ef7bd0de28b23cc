package run

import "fmt"

// WithError calls fn and converts a panic inside it into the returned error.
func WithError(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recovered(p)
		}
	}()

	return fn()
}

// AsyncWithError calls fn in a new goroutine. The returned channel receives exactly one value:
// fn's result, or the recovered panic as an error.
func AsyncWithError(fn func() error) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- WithError(fn)
	}()

	return errCh
}

func recovered(p any) error {
	if perr, ok := p.(error); ok {
		return perr
	}
	return fmt.Errorf("panic: %v", p)
}
