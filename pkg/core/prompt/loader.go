package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"forecast_agent/pkg/core/logger"
)

// LoadFromDirectory loads prompt overrides and schemas into the global registry.
// Expected structure:
//
//	baseDir/
//	  prompts/
//	    forecast/
//	      synthesis.json
//	  schemas/
//	    forecast_output.json
func LoadFromDirectory(baseDir string) error {
	return Get().LoadDirectory(baseDir)
}

// LoadDirectory loads prompts and schemas from baseDir into r.
func (r *Registry) LoadDirectory(baseDir string) error {
	promptDir := filepath.Join(baseDir, "prompts")
	if err := loadPrompts(r, promptDir); err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	schemaDir := filepath.Join(baseDir, "schemas")
	if err := loadSchemas(r, schemaDir); err != nil {
		logger.Log.Warnf("no schemas loaded from %s: %v", schemaDir, err)
	}

	logger.Log.Infof("prompt library holds %d prompts after loading %s", r.Count(), baseDir)
	return nil
}

// loadPrompts recursively loads all .json files from the prompts directory
func loadPrompts(r *Registry, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("prompts directory not found: %s", dir)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if pt.ID == "" {
			pt.ID = generateIDFromPath(path, dir)
		}
		if pt.Category == "" {
			pt.Category = detectCategory(path, dir)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		logger.Log.Debugf("loaded prompt %s from %s", pt.ID, path)
		return nil
	})
}

// loadSchemas loads all schema JSON files; the file content is the schema itself
func loadSchemas(r *Registry, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", path, err)
		}

		baseName := strings.TrimSuffix(filepath.Base(path), ".json")
		return r.RegisterSchema(&ResponseSchema{
			ID:         baseName,
			Name:       baseName,
			JSONSchema: string(data),
		})
	})
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "prompts/forecast/synthesis.json" -> "forecast.synthesis"
func generateIDFromPath(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	relPath = strings.TrimSuffix(relPath, ".json")
	return strings.ReplaceAll(relPath, string(filepath.Separator), ".")
}

// detectCategory extracts the category from the folder structure
func detectCategory(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

// RenderUserPrompt executes the user template of pt with ctx after checking
// its required variables.
func RenderUserPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}

	vars, err := pt.bind(ctx)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(pt.ID).Option("missingkey=zero").Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Render builds the full prompt text for id: system instructions followed by
// the rendered user template.
func (r *Registry) Render(id string, ctx *PromptExecutionContext) (string, error) {
	pt, err := r.GetPrompt(id)
	if err != nil {
		return "", err
	}
	user, err := RenderUserPrompt(pt, ctx)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}

	system := strings.TrimSpace(pt.SystemPrompt)
	switch {
	case system == "":
		return user, nil
	case user == "":
		return system, nil
	}
	return system + "\n\n" + user, nil
}
