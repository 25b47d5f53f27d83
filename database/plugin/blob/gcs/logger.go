// Copyright 2025 Gavel Labs
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

package gcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// GcsLogger gives the GCS store the same printf-style logging surface as
// the other blob plugins
type GcsLogger struct {
	logger *slog.Logger
}

func NewGcsLogger(logger *slog.Logger) *GcsLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &GcsLogger{logger: logger}
}

func (g *GcsLogger) emit(level slog.Level, msg string, args []any) {
	g.logger.Log(
		context.Background(),
		level,
		fmt.Sprintf(msg, args...),
		"component", "database",
	)
}

func (g *GcsLogger) Errorf(msg string, args ...any) {
	g.emit(slog.LevelError, msg, args)
}

func (g *GcsLogger) Warningf(msg string, args ...any) {
	g.emit(slog.LevelWarn, msg, args)
}

func (g *GcsLogger) Infof(msg string, args ...any) {
	g.emit(slog.LevelInfo, msg, args)
}

func (g *GcsLogger) Debugf(msg string, args ...any) {
	g.emit(slog.LevelDebug, msg, args)
}
