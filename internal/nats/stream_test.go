package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "onb.t-1.s-1.event.turn_processed", EventSubject("t-1", "s-1", model.EventTurnProcessed))
	assert.Equal(t, "onb._.s-1.event.project_created", EventSubject("", "s-1", model.EventProjectCreated))
	assert.Equal(t, "onb.acme_com.s_1.event.>", SessionFilter("acme.com", "s 1"))
	assert.Equal(t, "enrich.product.p-1", EnrichmentSubject("p-1"))
}

func TestToken(t *testing.T) {
	assert.Equal(t, "_", token(""))
	assert.Equal(t, "a_b_c_d", token("a.b*c>d"))
	assert.Equal(t, "plain-id", token("plain-id"))
}
