package pipeline

import "fmt"

// Stage names. Feature stages share their name with the table they produce,
// so watermark rows, validation reports and API routes all use one
// vocabulary.
const (
	StageStaging       = "staging"
	StageCustomerFacts = "customer_facts"
	StageProductFacts  = "product_facts"
	StageOrderFacts    = "order_facts"

	StageCustomerOverview       = "customer_overview"
	StageChurnFeatures          = "customer_churn_features"
	StageSegmentationFeatures   = "customer_segmentation_features"
	StageLTVFeatures            = "customer_ltv_features"
	StageProductOverview        = "product_overview"
	StageRecommendationFeatures = "product_recommendation_features"
	StageSalesOverview          = "sales_overview"
)

// StageOrder is the topological order RunAll walks. Stages at the same depth
// only depend on earlier entries, so a simple sequential walk respects every
// DAG edge.
var StageOrder = []string{
	StageStaging,
	StageCustomerFacts,
	StageProductFacts,
	StageOrderFacts,
	StageCustomerOverview,
	StageChurnFeatures,
	StageSegmentationFeatures,
	StageLTVFeatures,
	StageProductOverview,
	StageRecommendationFeatures,
	StageSalesOverview,
}

// stageDeps names the direct upstream dependencies of each stage.
var stageDeps = map[string][]string{
	StageStaging:       {},
	StageCustomerFacts: {StageStaging},
	StageProductFacts:  {StageStaging},
	StageOrderFacts:    {StageStaging},

	StageCustomerOverview:       {StageCustomerFacts},
	StageChurnFeatures:          {StageCustomerFacts},
	StageSegmentationFeatures:   {StageCustomerFacts},
	StageLTVFeatures:            {StageCustomerFacts},
	StageProductOverview:        {StageProductFacts},
	StageRecommendationFeatures: {StageProductFacts},
	StageSalesOverview:          {StageOrderFacts},
}

// UnknownStageError is returned for a stage name outside the DAG.
type UnknownStageError struct {
	Stage string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Stage)
}

// KnownStage reports whether the stage name belongs to the DAG.
func KnownStage(stage string) bool {
	_, ok := stageDeps[stage]
	return ok
}

// Dependencies returns the direct upstream stages of a stage.
func Dependencies(stage string) []string {
	return stageDeps[stage]
}
