package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrAgentType       = "agent.type"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"

	SpanLLMRequest    = "llm.request"
	SpanReasonerRun   = "reasoner.run"
	SpanCritiquePass  = "critique.pass"
	SpanCoherenceScan = "coherence.scan"
	SpanGateEvaluate  = "gate.evaluate"
	SpanBroadcast     = "workspace.broadcast"
	SpanMemoryLookup  = "memory.lookup"
	SpanEngineProcess = "engine.process"

	DefaultServiceName = "cortex"
)
