// Copyright The Somas Authors. All Rights Reserved.
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

package log

import (
	"context"
	"log/slog"
	"strings"
)

// slogBridge routes slog records into one of our Loggers. Attribute
// and group structuring is dropped; only the leveled message survives.
type slogBridge struct {
	l Logger
}

var _ slog.Handler = &slogBridge{}

// SetSlogLogger installs a Logger as the default slog destination.
func SetSlogLogger(source string) {
	l := Default()
	if source != "" {
		l = log.get(source)
	}
	slog.SetDefault(slog.New(l.SlogHandler()))
}

func (l logger) SlogHandler() slog.Handler {
	return &slogBridge{l: l}
}

// level maps an slog level to ours.
func level(l slog.Level) Level {
	switch {
	case l <= slog.LevelDebug:
		return LevelDebug
	case l <= slog.LevelInfo:
		return LevelInfo
	case l <= slog.LevelWarn:
		return LevelWarn
	}
	return LevelError
}

func (b *slogBridge) Enabled(_ context.Context, l slog.Level) bool {
	return log.level <= level(l)
}

func (b *slogBridge) Handle(_ context.Context, r slog.Record) error {
	msg := strings.TrimPrefix(r.Message, r.Level.String()+" ")
	switch level(r.Level) {
	case LevelDebug:
		b.l.Debug("%s", msg)
	case LevelInfo:
		b.l.Info("%s", msg)
	case LevelWarn:
		b.l.Warn("%s", msg)
	case LevelError:
		b.l.Error("%s", msg)
	}
	return nil
}

func (b *slogBridge) WithAttrs(_ []slog.Attr) slog.Handler {
	return b
}

func (b *slogBridge) WithGroup(_ string) slog.Handler {
	return b
}
