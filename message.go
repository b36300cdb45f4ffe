package main

const (
	MsgNoFileUploaded = "No file uploaded"

	MsgNoFileSelected = "No file selected"

	MsgInvalidFileType = "Invalid file type"

	MsgFileTooLarge = "File too large"

	MsgModelNotLoaded = "Model not loaded"

	// Prefix for pipeline failures shown on the upload form.
	MsgProcessingFailed = "Error processing image"
)
