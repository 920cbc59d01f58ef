package domain

// Classifier is the learned-model contract. Implementations map a
// feature vector to a fraud probability in [0,1]. The detector treats
// any implementation identically; swapping models never changes the
// decision pipeline.
type Classifier interface {
	// PredictProbability returns the fraud probability for one
	// transformed feature vector, ordered per FeatureNames.
	PredictProbability(features []float64) (float64, error)

	// FeatureNames returns the feature schema the classifier was
	// trained on, in input order. Used for compatibility checks
	// against the loaded transform state.
	FeatureNames() []string
}
