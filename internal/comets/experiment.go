package comets

// Experiment bundles everything one simulation run needs: the converted
// models, the spatial layout, the parameter set and the engine
// configuration. It is the unit the runner stages to disk and hands to
// the external engine.
type Experiment struct {
	Name   string
	Seed   int64
	Models []*Model
	Layout *Layout
	Params *Params
	Engine EngineConfig
}

// Validate checks the experiment end to end, collecting issues from the
// models, the layout and the parameters.
func (e *Experiment) Validate() error {
	err := &ValidationError{}
	if e.Name == "" {
		err.Add("experiment name is required")
	}
	if len(e.Models) == 0 {
		err.Add("experiment has no models")
	}
	for _, m := range e.Models {
		if verr := m.Validate(); verr != nil {
			if ve, ok := verr.(*ValidationError); ok {
				for _, issue := range ve.Issues {
					err.Add("model " + m.ID + ": " + issue)
				}
			} else {
				err.Add("model " + m.ID + ": " + verr.Error())
			}
		}
	}
	if e.Layout == nil {
		err.Add("experiment has no layout")
	} else if verr := e.Layout.Validate(); verr != nil {
		if ve, ok := verr.(*ValidationError); ok {
			err.Issues = append(err.Issues, ve.Issues...)
		} else {
			err.Add(verr.Error())
		}
	}
	if e.Params == nil {
		err.Add("experiment has no parameters")
	} else if verr := e.Params.Validate(); verr != nil {
		if ve, ok := verr.(*ValidationError); ok {
			err.Issues = append(err.Issues, ve.Issues...)
		} else {
			err.Add(verr.Error())
		}
	}
	if err.HasIssues() {
		return err
	}
	return nil
}
