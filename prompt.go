package mendz

import (
	"fmt"
	"strings"
)

// systemPreamble frames every synthesis conversation. The model is asked to
// produce the corrected output directly, never an explanation of the error.
const systemPreamble = "You are an error recovery assistant. A fallible " +
	"operation has failed. Given the failure context and a JSON schema, " +
	"infer the most plausible value the operation would have produced. Do " +
	"not explain the error. Respond with a single JSON value matching the " +
	"schema, and nothing else."

// Argument is one named argument of the failed operation, stringified for
// prompt context.
type Argument struct {
	Name  string
	Value string
}

// Prompt represents a structured synthesis prompt with consistent formatting.
// It enforces a canonical section order across attempts.
type Prompt struct {
	Task           string     // Required: what the model should synthesize
	Operation      string     // Required: name of the failed operation
	Arguments      []Argument // Arguments the operation was called with
	Failure        string     // Required: why the operation failed
	Context        string     // Optional: source or documentation of the operation
	PriorRejection string     // On retries: why the previous response was rejected
	Schema         string     // Required: JSON schema for the response
	Constraints    []string   // Rules and constraints
}

// Render converts the structured prompt to a string for the LLM.
// It enforces consistent ordering and formatting across attempts.
func (p *Prompt) Render() string {
	var sections []string

	if p.Task != "" {
		sections = append(sections, "Task: "+p.Task)
	}

	if p.Operation != "" {
		sections = append(sections, "Failed operation: "+p.Operation)
	}

	if len(p.Arguments) > 0 {
		args := "Arguments:\n"
		for _, a := range p.Arguments {
			args += fmt.Sprintf("  %s = %s\n", a.Name, a.Value)
		}
		sections = append(sections, strings.TrimSpace(args))
	}

	if p.Failure != "" {
		sections = append(sections, "Failure reason: "+p.Failure)
	}

	if p.Context != "" {
		sections = append(sections, "Context:\n"+p.Context)
	}

	if p.PriorRejection != "" {
		sections = append(sections,
			"Previous response rejected: "+p.PriorRejection+
				"\nCorrect this violation in your next response.")
	}

	if p.Schema != "" {
		sections = append(sections, "Return JSON matching this schema:\n"+p.Schema)
	}

	if len(p.Constraints) > 0 {
		con := "Constraints:\n"
		for _, c := range p.Constraints {
			con += "- " + c + "\n"
		}
		sections = append(sections, strings.TrimSpace(con))
	}

	return strings.Join(sections, "\n\n")
}

// Validate checks if the prompt has required fields.
func (p *Prompt) Validate() error {
	if p.Task == "" {
		return fmt.Errorf("prompt missing required Task field")
	}
	if p.Operation == "" {
		return fmt.Errorf("prompt missing required Operation field")
	}
	if p.Schema == "" {
		return fmt.Errorf("prompt missing required Schema field")
	}
	return nil
}

// compilePrompt builds the prompt for one synthesis attempt. Deterministic
// given identical input; attempts past the first carry the prior rejection
// so the model can correct the specific violation.
func compilePrompt(schema *Descriptor, call Call, attempt int, priorRejection string) *Prompt {
	prompt := &Prompt{
		Task:      "Synthesize the value the failed operation should have returned",
		Operation: call.Operation,
		Arguments: call.Arguments,
		Failure:   call.failureReason(),
		Context:   call.Doc,
		Schema:    schema.JSONSchema(),
		Constraints: []string{
			"Respond with a single JSON value matching the schema exactly",
			"Include every required field",
			"Preserve any identifiers present in the arguments",
			"Do not include explanations or markdown fences",
		},
	}

	if attempt > 1 && priorRejection != "" {
		prompt.PriorRejection = priorRejection
	}

	return prompt
}
