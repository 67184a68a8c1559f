// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		ServiceName:    "handoffd",
		ServiceVersion: "1.2.3",
		Exporter:       ExporterStdout,
		SampleRate:     1,
		Writer:         &buf,
	})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "handoff.ECHO")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "handoff.ECHO")
	assert.Contains(t, buf.String(), "handoffd")
}

func TestNew_ZeroSampleRateDropsRootSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	p, err := New(context.Background(), Config{
		ServiceName: "handoffd",
		Exporter:    ExporterStdout,
		SampleRate:  0,
		Writer:      &bytes.Buffer{},
	}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	_, span := p.Tracer("test").Start(context.Background(), "handoff.VERSION")
	span.End()

	assert.Empty(t, recorder.Ended())
}

func TestNew_UnknownExporter(t *testing.T) {
	_, err := New(context.Background(), Config{Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}
