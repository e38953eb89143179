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

package cli

import (
	"fmt"
	"io"

	"github.com/gravitational/azfailaway/lib/constants"
	"github.com/gravitational/azfailaway/lib/modules"
	"github.com/gravitational/azfailaway/tool/common"

	"github.com/gravitational/trace"
)

func printVersion(w io.Writer, format constants.Format) error {
	ver := modules.Get().Version()
	switch format {
	case constants.EncodingJSON:
		return trace.Wrap(common.PrintJSON(w, ver))
	default:
		_, err := fmt.Fprintf(w, "Edition:\t%v\nVersion:\t%v\nGit Commit:\t%v\n",
			ver.Edition, ver.Version, ver.GitCommit)
		return trace.Wrap(err)
	}
}
