package driven

// TokenCounter estimates token counts locally. It is used when a provider
// response carries no usage block.
type TokenCounter interface {
	// Count returns the number of tokens text encodes to for model.
	Count(model, text string) int
}
