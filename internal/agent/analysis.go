package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
)

const analysisUploadGuidance = "📊 I'd love to help you visualize your data! But first, please upload a CSV file using the upload button. Once you do, I can create charts, graphs, and plots for you."

const analysisSuccessMessage = "📊 Here's your visualization! I created this chart based on your data. Let me know if you'd like any modifications or a different type of chart."

const analysisGenericFailure = "I encountered an error while creating your visualization. Please try again or rephrase your request."

// RunAnalysis handles data-visualization requests: latest data version ->
// plot code -> sandbox -> base64 image.
func (a *Agent) RunAnalysis(ctx context.Context, sessionID, userMessage string) Result {
	log.Printf("[AnalysisAgent] starting analysis for session %s", sessionID)

	latest, err := a.Repo.LatestDataVersion(ctx, sessionID)
	if err != nil {
		log.Printf("[AnalysisAgent] latest version lookup failed: %v", err)
		return Result{Message: analysisGenericFailure}
	}
	if latest == nil {
		// Normal branch, not a failure of ours: nothing uploaded yet, so
		// no code generation and no sandbox run.
		return Result{Message: analysisUploadGuidance}
	}

	log.Printf("[AnalysisAgent] using data file %s", latest.FileURL)

	code, err := a.Gen.PlotCode(ctx, userMessage, latest.FileURL, "File: "+latest.FileName)
	if err != nil {
		log.Printf("[AnalysisAgent] code generation failed: %v", err)
		return Result{Message: analysisGenericFailure}
	}

	exec := a.Sandbox.RunScriptWithFile(ctx, code, plotOutputPath, runTimeout)

	log.Printf("[AnalysisAgent] execution done: success=%t hasFile=%t", exec.Success, len(exec.File) > 0)

	if exec.Success && len(exec.File) > 0 {
		return Result{
			Message:     analysisSuccessMessage,
			ImageBase64: base64.StdEncoding.EncodeToString(exec.File),
			Success:     true,
		}
	}

	return Result{
		Message: fmt.Sprintf("I tried to create the visualization but encountered an issue. This might be due to the data format or the type of chart requested.\n\n**Error details:**\n```\n%s\n```\n\nCould you try rephrasing your request or check if your data has the columns you're referring to?", errorDetail(exec)),
	}
}
