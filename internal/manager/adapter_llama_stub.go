//go:build !llama

package manager

// llamaBuilt indicates this binary was compiled without in-process llama support.
var llamaBuilt = false

// llamaAdapter refuses to load models without the 'llama' build tag so default
// builds stay CGO-free. The real adapter lives in adapter_llama.go.
type llamaAdapter struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

func NewLlamaAdapter(ctxSize, threads, gpuLayers int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads, gpuLayers: gpuLayers}
}

func (a *llamaAdapter) Start(spec ModelSpec, params InferParams) (InferSession, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
