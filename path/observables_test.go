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

package path

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObservablesSnapshotNeverNilBeforeWrites(t *testing.T) {
	o := NewObservables()
	snap := o.Snapshot()
	require.Equal(t, time.Duration(0), snap.SmoothedRTT)
}

func TestObservablesRecordRTTSampleFirstSampleSeedsEstimator(t *testing.T) {
	o := NewObservables()
	o.RecordRTTSample(100 * time.Millisecond)
	snap := o.Snapshot()
	require.Equal(t, 100*time.Millisecond, snap.SmoothedRTT)
	require.Equal(t, 50*time.Millisecond, snap.RTTVariance)
}

func TestObservablesRecordRTTSampleSmooths(t *testing.T) {
	o := NewObservables()
	o.RecordRTTSample(100 * time.Millisecond)
	o.RecordRTTSample(200 * time.Millisecond)
	snap := o.Snapshot()
	require.Greater(t, snap.SmoothedRTT, 100*time.Millisecond)
	require.Less(t, snap.SmoothedRTT, 200*time.Millisecond)
}

func TestObservablesRecordLossSampleFastReactsFasterThanSlow(t *testing.T) {
	o := NewObservables()
	o.RecordLossSample(1.0)
	snap := o.Snapshot()
	require.Greater(t, snap.SmoothedLossFast, snap.SmoothedLossSlow)
}

func TestObservablesRecordDeliveryAccumulatesVariance(t *testing.T) {
	o := NewObservables()
	base := time.Now()
	o.RecordDelivery(1000, base)
	o.RecordDelivery(1000, base.Add(10*time.Millisecond))
	o.RecordDelivery(2000, base.Add(20*time.Millisecond))
	require.GreaterOrEqual(t, o.DeliveryVariance(), 0.0)

	snap := o.Snapshot()
	require.Greater(t, snap.DeliveredBps, 0.0)
}
