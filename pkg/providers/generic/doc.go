// Package generic implements a generic OpenAI-compatible provider adapter.
//
// Any server that speaks the OpenAI chat completions streaming format can be
// used through this adapter:
//
//   - Ollama (http://localhost:11434/v1)
//   - LM Studio (http://localhost:1234/v1)
//   - vLLM (http://localhost:8000/v1)
//   - LocalAI, FastChat, Text Generation Inference
//
// # Basic Usage
//
//	config := providers.ProviderConfig{
//	    Name:    "ollama",
//	    Type:    "generic",
//	    BaseURL: "http://localhost:11434/v1",
//	    Timeout: 120 * time.Second, // local inference can be slow to start
//	}
//
//	provider, err := generic.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
// # Configuration Differences
//
// Compared to the openai adapter:
//
//   - BaseURL is required
//   - APIKey is optional; without one no Authorization header is sent
//   - Connection pools default smaller (single local instance)
//
// Not every compatible server reports token usage or supports /models; when
// /models is missing, ListModels falls back to the configured model list.
package generic
