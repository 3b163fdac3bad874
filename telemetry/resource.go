package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func (m *Manager) createResource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(m.config.ServiceName),
		semconv.ServiceVersion(m.config.ServiceVersion),
	}

	// values may reference environment variables, e.g. "${DEPLOY_ENV}"
	for key, value := range flattenMap(m.config.ResourceAttrs, "") {
		attrs = append(attrs, attribute.String(key, os.ExpandEnv(value)))
	}

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
}

// flattenMap turns {"deployment": {"environment": "test"}} into {"deployment.environment": "test"}
func flattenMap(m map[string]interface{}, prefix string) map[string]string {
	result := make(map[string]string)
	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			result[fullKey] = v
		case map[string]interface{}:
			nested := flattenMap(v, fullKey)
			for nestedKey, nestedValue := range nested {
				result[nestedKey] = nestedValue
			}
		default:
			result[fullKey] = fmt.Sprintf("%v", v)
		}
	}
	return result
}
