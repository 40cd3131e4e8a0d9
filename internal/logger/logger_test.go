// SecureTalks - Decentralized End-to-End Encrypted Messenger
// Copyright (C) 2025 securetalks-project
//
// This file is part of SecureTalks.
//
// SecureTalks is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SecureTalks is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SecureTalks. If not, see <https://www.gnu.org/licenses/>.

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, InfoLevel)

	l.Info("peer connected", String("address", "10.0.0.1"), Int("port", 8001))

	entry := lastEntry(t, &buf)
	require.Equal(t, "INFO", entry["level"])
	require.Equal(t, "peer connected", entry["message"])
	require.Equal(t, "10.0.0.1", entry["address"])
	require.Equal(t, float64(8001), entry["port"])
	require.NotEmpty(t, entry["timestamp"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, WarnLevel)

	l.Debug("dropped")
	l.Info("dropped too")
	require.Zero(t, buf.Len())

	l.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, InfoLevel).WithFields(String("component", "sender"))

	l.Error("dial failed", Error(errors.New("connection refused")))

	entry := lastEntry(t, &buf)
	require.Equal(t, "sender", entry["component"])
	require.Equal(t, "connection refused", entry["error"])
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", DebugLevel.String())
	require.Equal(t, "FATAL", FatalLevel.String())
	require.Equal(t, "UNKNOWN", Level(42).String())
}
