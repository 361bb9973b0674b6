package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to a backend. Target names the file being
// produced, when there is one.
type Prompt struct {
	System  string
	User    string
	Target  string
	History []Message
}

// Message is an optional prior turn.
type Message struct {
	Role    string
	Content string
}

// Text flattens the prompt for backends that take a single string.
func (p Prompt) Text() string {
	var sb strings.Builder
	if p.System != "" {
		sb.WriteString(p.System)
		sb.WriteString("\n\n")
	}
	for _, h := range p.History {
		sb.WriteString(h.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString(p.User)
	return sb.String()
}

const fileSystemPrompt = "You generate exactly one file of a software project. " +
	"Output only the raw content of that file: no markdown fences, no explanations, no surrounding text."

const noContextNotice = "No files have been created yet. This is the first file."

// FileRequest describes one generation step.
type FileRequest struct {
	Path           string
	Description    string
	ProjectContext string
	// RenderedContext is the accumulated excerpt of previously generated files.
	RenderedContext string
}

// BuildFilePrompt composes the prompt for a single file from its path and
// description, the project-level context and the files generated so far.
func BuildFilePrompt(req FileRequest) Prompt {
	rendered := req.RenderedContext
	if strings.TrimSpace(rendered) == "" {
		rendered = noContextNotice
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Based on the following project details, generate the complete and raw source code for the file: %s.\n\n", req.Path))
	sb.WriteString("**File Description:**\n")
	sb.WriteString(req.Description)
	sb.WriteString("\n\n**Overall Project Context:**\n")
	sb.WriteString(req.ProjectContext)
	sb.WriteString("\n\n**Relevant Existing Files (for context and correct imports):**\n")
	sb.WriteString(rendered)
	sb.WriteString("\n")

	return Prompt{
		System: fileSystemPrompt,
		User:   sb.String(),
		Target: req.Path,
	}
}

// BuildPlanPrompt asks for a dependency-annotated file structure of a project.
// When inlineSchema is non-empty it is appended for backends without native
// structured output.
func BuildPlanPrompt(projectContext, inlineSchema string) Prompt {
	var sb strings.Builder
	sb.WriteString("Create a dependency-ordered project structure based on the following description. ")
	sb.WriteString("For each file, specify its dependencies using the 'dependsOn' array. ")
	sb.WriteString("This structure will be used to generate each file sequentially.\n\n")
	sb.WriteString("Project description: ")
	sb.WriteString(projectContext)
	appendInlineSchema(&sb, inlineSchema)

	return Prompt{
		System: "You are a software architect. Paths are relative to the project root.",
		User:   sb.String(),
	}
}

const specSystemPrompt = "You are a business analyst who turns project ideas into structured requirements."

// BuildDraftPrompt asks for a project specification derived from free-form
// business information or a short project description.
func BuildDraftPrompt(businessInfo, inlineSchema string) Prompt {
	var sb strings.Builder
	sb.WriteString("Generate a structured project specification from the following business information. ")
	sb.WriteString("Fill out all the fields of the schema based on the provided text.\n\n")
	sb.WriteString("Business Information:\n")
	sb.WriteString(businessInfo)
	appendInlineSchema(&sb, inlineSchema)
	return Prompt{System: specSystemPrompt, User: sb.String()}
}

// BuildImprovePrompt asks for a refined version of an existing project
// specification, given as indented JSON.
func BuildImprovePrompt(specJSON, inlineSchema string) Prompt {
	var sb strings.Builder
	sb.WriteString("Improve the project specification for the following project description: ")
	sb.WriteString(specJSON)
	appendInlineSchema(&sb, inlineSchema)
	return Prompt{System: specSystemPrompt, User: sb.String()}
}

func appendInlineSchema(sb *strings.Builder, schema string) {
	if schema == "" {
		return
	}
	sb.WriteString("\n\nReply with a single JSON object matching this JSON schema and nothing else:\n")
	sb.WriteString(schema)
}
