// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"runtime/debug"

	"shkernel/internal/kernel"
)

const interpreterModule = "mvdan.cc/sh/v3"

// LanguageInfo describes the shell dialect VirtualEngine evaluates.
func LanguageInfo() kernel.LanguageInfo {
	return kernel.LanguageInfo{
		Name:              "bash",
		Version:           interpreterVersion(),
		MIMEType:          "text/x-sh",
		FileExtension:     ".sh",
		PygmentsLexer:     "bash",
		CodeMirrorMode:    "shell",
		Implementation:    "shkernel",
		ImplementationURL: "https://pkg.go.dev/" + interpreterModule + "/interp",
		HelpLinks: []kernel.HelpLink{
			{Text: "Bash reference manual", URL: "https://www.gnu.org/software/bash/manual/bash.html"},
			{Text: "Interpreter documentation", URL: "https://pkg.go.dev/" + interpreterModule + "/interp"},
		},
	}
}

// interpreterVersion reports the version of the embedded interpreter module
// from the build information.
func interpreterVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == interpreterModule {
				return dep.Version
			}
		}
	}
	return "v3"
}
