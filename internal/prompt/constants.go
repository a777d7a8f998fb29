package prompt

// Canonical prompt names. Callers use these instead of ad-hoc strings.
const (
	Assessment      = "assessment_prompt"
	BRERules        = "bre_rules_prompt"
	Codify          = "codify_prompt"
	GenerateOptions = "generate_options_prompt"
	KeysMapper      = "keys_mapper_prompt"
	Summarize       = "summarize_prompt"
	UserQuery       = "user_query_processor_prompt"
	Compare         = "compare_processor_prompt"
	TestBed         = "test_bed_prompt"
	Rulify          = "rulify_prompt"
	FraudDetection  = "fraud_detection_prompt"
)

// Standard maps each canonical name to its description.
var Standard = map[string]string{
	Assessment:      "Assessment Agent Prompt",
	BRERules:        "BRE Rules Agent Prompt",
	Codify:          "Codify Code Generation Prompt",
	GenerateOptions: "Generate Options Agent Prompt",
	KeysMapper:      "Keys Mapper Agent Prompt",
	Summarize:       "Summarize Agent Prompt",
	UserQuery:       "User Query Processor Prompt",
	Compare:         "Compare Processor Prompt",
	TestBed:         "Test Bed Agent Prompt",
	Rulify:          "Rulify Agent Prompt",
	FraudDetection:  "Fraud Detection Prompt",
}

const DefaultSystemPrompt = "You are a helpful assistant."

// Seed registers the standard catalog into the registry with the default
// system prompt as content.
func Seed(r *Registry) error {
	for name, desc := range Standard {
		p, err := New(name, DefaultSystemPrompt, "", desc)
		if err != nil {
			return err
		}
		r.Register(p)
	}
	return nil
}
