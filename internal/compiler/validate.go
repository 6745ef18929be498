package compiler

import (
	"fmt"
	"path/filepath"
	"strings"
)

// shellMetaChars are rejected in commands and arguments. The compiler is
// invoked without a shell, but configuration files travel between machines
// and a value that only makes sense to a shell is a misconfiguration at best.
var shellMetaChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\n", "\r"}

func validateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is empty")
	}
	for _, ch := range shellMetaChars {
		if strings.Contains(command, ch) {
			return fmt.Errorf("command contains %q", ch)
		}
	}
	// Relative path segments in an explicit command path resolve against
	// whatever the working directory happens to be. Require either a bare
	// name (PATH lookup) or an absolute path.
	if strings.ContainsRune(command, filepath.Separator) && !filepath.IsAbs(command) {
		return fmt.Errorf("command path must be absolute or a bare name, got %q", command)
	}
	return nil
}

func validateArgument(arg string) error {
	for _, ch := range shellMetaChars {
		if strings.Contains(arg, ch) {
			return fmt.Errorf("argument %q contains %q", arg, ch)
		}
	}
	if strings.Contains(arg, "..") {
		return fmt.Errorf("argument %q contains a path traversal sequence", arg)
	}
	return nil
}
