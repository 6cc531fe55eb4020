package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagcore/flagcore/lduser"
	"github.com/flagcore/flagcore/ldvalue"
)

func TestUserFilterRedactsPerUserPrivateAttribute(t *testing.T) {
	user := lduser.NewUserBuilder("user1").
		Custom("email", ldvalue.String("a@example.com")).
		Private("email").
		Build()

	out := newUserFilter(Config{}).filter(user)
	assert.NotContains(t, out.Custom, "email")
	assert.Contains(t, out.PrivateAttributes, "email")
}

func TestUserFilterAllAttributesPrivate(t *testing.T) {
	user := lduser.NewUserBuilder("user1").Custom("email", ldvalue.String("a@example.com")).Build()
	out := newUserFilter(Config{AllAttributesPrivate: true}).filter(user)
	assert.NotContains(t, out.Custom, "email")
}

func TestUserFilterKeepsPublicAttributes(t *testing.T) {
	user := lduser.NewUserBuilder("user1").Custom("plan", ldvalue.String("gold")).Build()
	out := newUserFilter(Config{}).filter(user)
	assert.Equal(t, "gold", out.Custom["plan"])
}
