// Copyright 2013 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import "testing"

func testMetric(t testing.TB) {
	var scenarios = []struct {
		input           LabelSet
		fingerprint     Fingerprint
		fastFingerprint Fingerprint
	}{
		{
			input:           LabelSet{},
			fingerprint:     LabelSet{}.Fingerprint(),
			fastFingerprint: LabelSet{}.FastFingerprint(),
		},
		{
			input: LabelSet{
				"first_name":   "electro",
				"occupation":   "robot",
				"manufacturer": "westinghouse",
			},
			fingerprint: LabelSet{
				"first_name":   "electro",
				"occupation":   "robot",
				"manufacturer": "westinghouse",
			}.Fingerprint(),
			fastFingerprint: LabelSet{
				"first_name":   "electro",
				"occupation":   "robot",
				"manufacturer": "westinghouse",
			}.FastFingerprint(),
		},
	}

	for i, scenario := range scenarios {
		input := Metric(scenario.input)

		if scenario.fingerprint != input.Fingerprint() {
			t.Errorf("%d. expected %s, got %s", i, scenario.fingerprint, input.Fingerprint())
		}
		if scenario.fastFingerprint != input.FastFingerprint() {
			t.Errorf("%d. expected %s, got %s", i, scenario.fastFingerprint, input.FastFingerprint())
		}
	}
}

func TestMetric(t *testing.T) {
	testMetric(t)
}

func TestMetricClone(t *testing.T) {
	m := Metric{
		MetricNameLabel: "requests",
		"job":           "api",
	}
	clone := m.Clone()
	clone["job"] = "worker"

	if m["job"] != "api" {
		t.Errorf("expected original metric to be unchanged, got %s", m["job"])
	}
	if clone["job"] != "worker" {
		t.Errorf("expected clone to be changed, got %s", clone["job"])
	}
}

func TestMetricString(t *testing.T) {
	scenarios := []struct {
		name     string
		input    Metric
		expected string
	}{
		{
			name: "valid metric without __name__ label",
			input: Metric{
				"first_name":   "electro",
				"occupation":   "robot",
				"manufacturer": "westinghouse",
			},
			expected: `{first_name="electro", manufacturer="westinghouse", occupation="robot"}`,
		},
		{
			name: "valid metric with __name__ label",
			input: Metric{
				"__name__":     "electro",
				"occupation":   "robot",
				"manufacturer": "westinghouse",
			},
			expected: `electro{manufacturer="westinghouse", occupation="robot"}`,
		},
		{
			name:     "empty metric with __name__ label",
			input:    Metric{"__name__": "fooname"},
			expected: "fooname",
		},
		{
			name:     "empty metric",
			input:    Metric{},
			expected: "{}",
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			actual := scenario.input.String()
			if actual != scenario.expected {
				t.Errorf("expected string output %s, but got %s", scenario.expected, actual)
			}
		})
	}
}

func TestIsValidMetricName(t *testing.T) {
	var scenarios = []struct {
		mn    LabelValue
		valid bool
	}{
		{
			mn:    "Avalid_23name",
			valid: true,
		},
		{
			mn:    "_Avalid_23name",
			valid: true,
		},
		{
			mn:    "1valid_23name",
			valid: false,
		},
		{
			mn:    "avalid_23name",
			valid: true,
		},
		{
			mn:    "Ava:lid_23name",
			valid: true,
		},
		{
			mn:    "a lid_23name",
			valid: false,
		},
		{
			mn:    ":leading_colon",
			valid: true,
		},
		{
			mn:    "colon:in:the:middle",
			valid: true,
		},
		{
			mn:    "",
			valid: false,
		},
	}

	for _, s := range scenarios {
		if IsValidMetricName(s.mn) != s.valid {
			t.Errorf("Expected %v for %q using IsValidMetricName function", s.valid, s.mn)
		}
		if MetricNameRE.MatchString(string(s.mn)) != s.valid {
			t.Errorf("Expected %v for %q using regexp matching", s.valid, s.mn)
		}
	}
}
