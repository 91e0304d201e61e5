package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/events"
	"github.com/datagent-dev/datagent/internal/storage"
)

const preparationUploadGuidance = "🧹 I can help you clean and transform your data! But first, please upload a CSV file. Once uploaded, I can help you:\n\n• Remove duplicates\n• Handle missing values\n• Filter rows\n• Transform columns\n• And much more!"

const preparationGenericFailure = "I encountered an error while processing your data. Please try again or rephrase your request."

// RunPreparation handles cleaning/transformation requests: latest data
// version -> cleaning code -> sandbox -> upload result as the next
// version label.
func (a *Agent) RunPreparation(ctx context.Context, sessionID, userMessage string) Result {
	log.Printf("[PreparationAgent] starting preparation for session %s", sessionID)

	latest, err := a.Repo.LatestDataVersion(ctx, sessionID)
	if err != nil {
		log.Printf("[PreparationAgent] latest version lookup failed: %v", err)
		return Result{Message: preparationGenericFailure}
	}
	if latest == nil {
		return Result{Message: preparationUploadGuidance}
	}

	log.Printf("[PreparationAgent] using data file %s", latest.FileURL)

	code, err := a.Gen.CleaningCode(ctx, userMessage, latest.FileURL, "File: "+latest.FileName)
	if err != nil {
		log.Printf("[PreparationAgent] code generation failed: %v", err)
		return Result{Message: preparationGenericFailure}
	}

	exec := a.Sandbox.RunScriptWithFile(ctx, code, cleanedOutputPath, runTimeout)

	log.Printf("[PreparationAgent] execution done: success=%t hasFile=%t", exec.Success, len(exec.File) > 0)

	if !exec.Success || len(exec.File) == 0 {
		return Result{
			Message: fmt.Sprintf("I tried to clean your data but encountered an issue.\n\n**Error details:**\n```\n%s\n```\n\nCould you try being more specific about what you'd like to do with the data?", errorDetail(exec)),
		}
	}

	// Next label is v<count>. Under concurrent requests for the same
	// session this count can race with LatestDataVersion above; accepted,
	// see DESIGN.md.
	count, err := a.Repo.CountDataVersions(ctx, sessionID)
	if err != nil {
		log.Printf("[PreparationAgent] version count failed: %v", err)
		return Result{Message: preparationGenericFailure}
	}
	newVersion := fmt.Sprintf("v%d", count)

	cleanedName := "cleaned_" + latest.FileName
	fileURL, err := a.Store.Upload(ctx, storage.Key(sessionID, newVersion, cleanedName), exec.File, "text/csv")
	if err != nil {
		log.Printf("[PreparationAgent] upload failed: %v", err)
		return Result{Message: preparationGenericFailure}
	}

	size := int64(len(exec.File))
	description := "Cleaned data: " + truncate(userMessage, 100)
	if err := a.Repo.CreateDataVersion(ctx, &chat.DataVersion{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Version:     newVersion,
		FileName:    cleanedName,
		FileURL:     fileURL,
		FileSize:    &size,
		Description: &description,
	}); err != nil {
		log.Printf("[PreparationAgent] version record failed: %v", err)
		return Result{Message: preparationGenericFailure}
	}

	a.publish(ctx, events.TypeDataVersionCreated, sessionID, map[string]any{
		"version":  newVersion,
		"fileName": cleanedName,
		"fileSize": size,
	})

	summary := exec.Stdout
	if summary == "" {
		summary = "Data cleaning completed successfully."
	}

	return Result{
		Message: fmt.Sprintf("✅ **Data Cleaned Successfully!**\n\nI've processed your data and created a new version (**%s**).\n\n**Summary:**\n%s\n\n📥 You can download the cleaned data using the link below. Future analysis requests will automatically use this cleaned version.", newVersion, summary),
		FileURL:  fileURL,
		FileName: cleanedName,
		Success:  true,
	}
}
