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

package badger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// BadgerLogger bridges badger's printf-style logging interface onto slog.
// Badger terminates its messages with a newline, which slog does not want.
type BadgerLogger struct {
	logger *slog.Logger
}

func NewBadgerLogger(logger *slog.Logger) *BadgerLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &BadgerLogger{logger: logger}
}

func (b *BadgerLogger) emit(level slog.Level, msg string, args []any) {
	b.logger.Log(
		context.Background(),
		level,
		strings.TrimSuffix(fmt.Sprintf(msg, args...), "\n"),
		"component", "database",
	)
}

func (b *BadgerLogger) Errorf(msg string, args ...any) {
	b.emit(slog.LevelError, msg, args)
}

func (b *BadgerLogger) Warningf(msg string, args ...any) {
	b.emit(slog.LevelWarn, msg, args)
}

func (b *BadgerLogger) Infof(msg string, args ...any) {
	b.emit(slog.LevelInfo, msg, args)
}

func (b *BadgerLogger) Debugf(msg string, args ...any) {
	b.emit(slog.LevelDebug, msg, args)
}
