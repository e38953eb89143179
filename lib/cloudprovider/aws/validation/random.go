/*
Copyright 2021 Gravitational, Inc.

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

package validation

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/pborman/uuid"
)

// dummyNameLen is the length of the random part of probe resource names
const dummyNameLen = 12

// dummyValue returns a random name with the specified prefix.
// Probes reference resources by names that do not exist
func dummyValue(prefix string) *string {
	suffix := strings.Replace(uuid.New(), "-", "", -1)
	return aws.String(prefix + suffix[:dummyNameLen])
}
