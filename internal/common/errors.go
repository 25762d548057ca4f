package common

import "fmt"

// StatusError es una respuesta HTTP con un codigo inesperado de un servicio remoto.
type StatusError struct {
	Service    string // "dandi", "lindi", "dendro"
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s devolvio status %d (%s)", e.Service, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s devolvio status %d (%s): %s", e.Service, e.StatusCode, e.URL, e.Body)
}

// Temporary indica si vale la pena reintentar la peticion.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
