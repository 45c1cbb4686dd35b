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

	"github.com/stretchr/testify/require"
)

func TestClassifyKeyframeAlwaysCritical(t *testing.T) {
	u := Unit{IsKeyframe: true, RequestedPriority: PriorityDisposable}
	require.Equal(t, PriorityCritical, Classify(u))
}

func TestClassifyCodecConfigAlwaysCritical(t *testing.T) {
	u := Unit{IsCodecConfig: true, RequestedPriority: PriorityStandard}
	require.Equal(t, PriorityCritical, Classify(u))
}

func TestClassifyHonorsRequestedPriorityOtherwise(t *testing.T) {
	u := Unit{RequestedPriority: PriorityReference}
	require.Equal(t, PriorityReference, Classify(u))
}
