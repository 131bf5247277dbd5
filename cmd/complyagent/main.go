// Command complyagent analyzes compliance tasks from the command line.
package main

import (
	"github.com/walvekarn/agentic-compliance-agent-sub001/cli"

	// Provider registration.
	_ "github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers/anthropic"
	_ "github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers/mock"
	_ "github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers/openai"
)

func main() {
	cli.Execute()
}
