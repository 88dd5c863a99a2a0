// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package fuzzutil

type Step interface {
	DoStep()
}

// A TestRun is a decoded sequence of steps plus the cleanup which
// releases whatever the steps mapped.
type TestRun struct {
	steps   []Step
	cleanup func()
}

func NewTestRun(bytes []byte, stepMaker func(*ByteConsumer) Step, cleanup func()) *TestRun {
	tr := &TestRun{
		cleanup: cleanup,
	}
	consumer := NewByteConsumer(bytes)

	for consumer.Len() > 0 {
		tr.steps = append(tr.steps, stepMaker(consumer))
	}
	return tr
}

func (t *TestRun) Run() {
	defer t.cleanup()
	for _, step := range t.steps {
		step.DoStep()
	}
}
