/*
Copyright (c) The Bond Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacerIntervalZeroBeforeUpdate(t *testing.T) {
	p := NewPacer()
	require.Equal(t, time.Duration(0), p.Interval(1000))
}

func TestPacerIntervalScalesWithRate(t *testing.T) {
	p := NewPacer()
	p.Update(8_000_000) // 1 MB/s
	interval := p.Interval(1000)
	require.InDelta(t, time.Millisecond, interval, float64(time.Microsecond)*10)
}

func TestPacerBatchSizeCapped(t *testing.T) {
	p := NewPacer()
	require.Equal(t, MaxBatchSize, p.BatchSize(1000))
	require.Equal(t, 3, p.BatchSize(3))
}
