// Package backoff adapta github.com/cenkalti/backoff/v4 a los clientes HTTP:
// una politica por cliente y un Retry con contexto y limite de reintentos.
package backoff

import (
	"context"
	"errors"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Policy construye un BackOff nuevo para cada llamada a Retry.
type Policy func() cbackoff.BackOff

// Default es la politica de los clientes HTTP: 500ms, 1s, 2s... hasta 10s, con jitter.
func Default() Policy {
	return func() cbackoff.BackOff {
		b := cbackoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 10 * time.Second
		b.RandomizationFactor = 0.5
		b.MaxElapsedTime = 0 // el limite lo pone maxRetries
		b.Reset()
		return b
	}
}

// Constant espera siempre d entre intentos.
func Constant(d time.Duration) Policy {
	return func() cbackoff.BackOff { return cbackoff.NewConstantBackOff(d) }
}

// Permanent marca un error que no debe reintentarse.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return cbackoff.Permanent(err)
}

// IsPermanent indica si err fue marcado con Permanent.
func IsPermanent(err error) bool {
	var p *cbackoff.PermanentError
	return errors.As(err, &p)
}

// Retry ejecuta fn hasta maxRetries+1 veces. Se detiene ante un error permanente
// (devuelto sin la marca) o si se cancela el contexto.
func Retry(ctx context.Context, maxRetries int, p Policy, fn func(attempt int) error) error {
	if p == nil {
		p = Default()
	}
	b := cbackoff.WithMaxRetries(p(), uint64(max(0, maxRetries)))

	attempt := 0
	return cbackoff.Retry(func() error {
		err := fn(attempt)
		attempt++
		return err
	}, cbackoff.WithContext(b, ctx))
}
