package endpoint

import (
	"fmt"

	"github.com/S-Corkum/external-adapter/internal/errs"
	"github.com/xeipuuv/gojsonschema"
)

// validationPlan is the compiled form of a set of InputParameters: a
// static JSON Schema (built once at construction) plus the dependsOn /
// exclusive / alias bookkeeping gojsonschema has no native vocabulary for.
type validationPlan struct {
	schema      *gojsonschema.Schema
	params      map[string]InputParameter
	aliasToName map[string]string
}

var jsonSchemaType = map[string]string{
	"string":  "string",
	"number":  "number",
	"boolean": "boolean",
	"array":   "array",
	"object":  "object",
}

// buildValidationPlan compiles params into a validationPlan, validating the
// construction-time invariants: required params may not also carry a
// default; dependsOn/exclusive names must resolve to declared parameters;
// aliases must be globally unique within the endpoint.
func buildValidationPlan(params map[string]InputParameter) (*validationPlan, error) {
	aliasToName := make(map[string]string)
	properties := make(map[string]interface{}, len(params))
	var required []string

	for name, p := range params {
		if p.Required && p.Default != nil {
			return nil, fmt.Errorf("endpoint: parameter %q cannot be both required and have a default", name)
		}
		schemaType, ok := jsonSchemaType[p.Type]
		if !ok {
			return nil, fmt.Errorf("endpoint: parameter %q has unknown type %q", name, p.Type)
		}
		prop := map[string]interface{}{"type": schemaType}
		if len(p.Options) > 0 {
			prop["enum"] = p.Options
		}
		properties[name] = prop

		if p.Required {
			required = append(required, name)
		}

		for _, alias := range p.Aliases {
			if existing, ok := aliasToName[alias]; ok && existing != name {
				return nil, fmt.Errorf("endpoint: alias %q is declared for both %q and %q", alias, existing, name)
			}
			aliasToName[alias] = name
		}
	}

	for name, p := range params {
		for _, dep := range p.DependsOn {
			if _, ok := params[dep]; !ok {
				return nil, fmt.Errorf("endpoint: parameter %q depends on undeclared parameter %q", name, dep)
			}
		}
		for _, excl := range p.Exclusive {
			if _, ok := params[excl]; !ok {
				return nil, fmt.Errorf("endpoint: parameter %q is exclusive with undeclared parameter %q", name, excl)
			}
		}
	}

	schemaDoc := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		schemaDoc["required"] = required
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("endpoint: failed to compile validation plan: %w", err)
	}

	return &validationPlan{schema: schema, params: params, aliasToName: aliasToName}, nil
}

// resolve expands aliases and applies defaults into a new map, leaving
// data untouched, and returns it for the JSON Schema validator.
func (v *validationPlan) resolve(data map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(data))
	for k, val := range data {
		name := k
		if canonical, ok := v.aliasToName[k]; ok {
			name = canonical
		}
		resolved[name] = val
	}
	for name, p := range v.params {
		if _, present := resolved[name]; !present && p.Default != nil {
			resolved[name] = p.Default
		}
	}
	return resolved
}

// validate resolves aliases/defaults and checks the result against the
// compiled schema plus the dependsOn/exclusive invariants, returning the
// resolved parameter map on success.
func (v *validationPlan) validate(data map[string]interface{}) (map[string]interface{}, error) {
	resolved := v.resolve(data)

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(resolved))
	if err != nil {
		return nil, errs.New(errs.InvalidInput, err)
	}
	if !result.Valid() {
		return nil, errs.Newf(errs.InvalidInput, "invalid input: %v", result.Errors())
	}

	for name, p := range v.params {
		if _, present := resolved[name]; !present {
			continue
		}
		for _, dep := range p.DependsOn {
			if _, ok := resolved[dep]; !ok {
				return nil, errs.Newf(errs.InvalidInput, "parameter %q requires %q", name, dep)
			}
		}
		for _, excl := range p.Exclusive {
			if _, ok := resolved[excl]; ok {
				return nil, errs.Newf(errs.InvalidInput, "parameter %q is mutually exclusive with %q", name, excl)
			}
		}
	}

	return resolved, nil
}
