/*
   Copyright 2026 The fleetd Authors

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

package logstats

import (
	"regexp"
	"strings"
	"time"
)

// lineRE extracts (time, request path, upstream) from a combined
// access-log line with an appended upstream field, the three fields
// spec.md section 4.9 needs attributed and bucketed. The request
// method/status/etc. are deliberately not captured here; ptymux's
// accessLogLineRE captures the full record for live tailing, this one
// only what bucketing needs.
var lineRE = regexp.MustCompile(`\[([^\]]+)\] "(?:\S+) (\S+) [^"]*".*[\s"]([0-9]{1,3}(?:\.[0-9]{1,3}){3})(?::[0-9]+)?"?\s*$`)

const nginxTimeLayout = "02/Jan/2006:15:04:05 -0700"

type record struct {
	Time       time.Time
	Path       string
	UpstreamIP string
}

func parseLine(line string) (record, bool) {
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return record{}, false
	}
	ts, err := time.Parse(nginxTimeLayout, m[1])
	if err != nil {
		return record{}, false
	}
	return record{Time: ts, Path: strings.TrimSpace(m[2]), UpstreamIP: m[3]}, true
}
