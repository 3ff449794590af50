package tools

import (
	"embed"
	"fmt"
)

//go:embed prompts/*.md
var promptFS embed.FS

// loadPrompt reads an embedded system prompt template. The files are
// compiled into the binary, so a missing name is a programming error.
func loadPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt %q missing: %v", name, err))
	}
	return string(data)
}
