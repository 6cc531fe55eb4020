package events

import "github.com/flagcore/flagcore/lduser"

// userFilter produces the redacted wire representation of a user for outbound events, removing
// any attribute named as private either globally (by Config) or on that specific user.
type userFilter struct {
	allAttributesPrivate bool
	globalPrivate        map[string]bool
}

func newUserFilter(config Config) userFilter {
	global := make(map[string]bool, len(config.GlobalPrivateAttributes))
	for _, name := range config.GlobalPrivateAttributes {
		global[name] = true
	}
	return userFilter{allAttributesPrivate: config.AllAttributesPrivate, globalPrivate: global}
}

// outUser is the JSON shape of a user as embedded in outbound events.
type outUser struct {
	Key               string                 `json:"key"`
	Kind              string                 `json:"kind,omitempty"`
	Anonymous         bool                   `json:"anonymous,omitempty"`
	Custom            map[string]interface{} `json:"custom,omitempty"`
	PrivateAttributes []string               `json:"privateAttrs,omitempty"`
}

func (f userFilter) filter(user lduser.User) outUser {
	out := outUser{Key: user.Key(), Anonymous: user.Anonymous()}
	if user.Kind() != "user" {
		out.Kind = user.Kind()
	}

	private := make(map[string]bool, len(f.globalPrivate))
	for name := range f.globalPrivate {
		private[name] = true
	}
	for _, name := range user.PrivateAttributeNames() {
		private[name] = true
	}

	var redacted []string
	for _, name := range user.CustomAttributeNames() {
		if f.allAttributesPrivate || private[name] {
			redacted = append(redacted, name)
			continue
		}
		value, ok := user.GetAttribute(name)
		if !ok {
			continue
		}
		if out.Custom == nil {
			out.Custom = make(map[string]interface{})
		}
		out.Custom[name] = value.InnerValue()
	}
	out.PrivateAttributes = redacted
	return out
}
