// Package replicator implements the handler-pipeline fan-out stage: one
// input chain feeding N downstream muxer chains (spec.md §4, "Replicator").
package replicator

import "github.com/go-webdl/packager/handler"

// Replicator forwards every record it receives, unmodified, to all of its
// output handlers.
type Replicator struct {
	outputs []handler.Handler
}

// New returns a Replicator fanning out to outputs.
func New(outputs ...handler.Handler) *Replicator {
	return &Replicator{outputs: outputs}
}

func (r *Replicator) Initialize() error {
	for _, o := range r.outputs {
		if err := o.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replicator) Process(rec handler.Record) error {
	for _, o := range r.outputs {
		if err := o.Process(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replicator) Flush(port handler.InputPort) error {
	for _, o := range r.outputs {
		if err := o.Flush(port); err != nil {
			return err
		}
	}
	return nil
}
