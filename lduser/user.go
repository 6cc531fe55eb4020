// Package lduser defines the user/context type passed into flag evaluations: a key plus a set of
// built-in and custom attributes that clauses and rollouts can reference.
package lduser

import "github.com/flagcore/flagcore/ldvalue"

// User represents a user or other evaluation context.
type User struct {
	key          string
	kind         string
	secondary    ldvalue.Value
	anonymous    bool
	attrs        map[string]ldvalue.Value
	privateAttrs []string
}

// NewUser creates a User with only a key set.
func NewUser(key string) User {
	return User{key: key, kind: "user"}
}

// NewUserBuilder creates a builder for constructing a User with additional attributes.
func NewUserBuilder(key string) *UserBuilder {
	return &UserBuilder{user: User{key: key, kind: "user"}}
}

// UserBuilder incrementally constructs a User.
type UserBuilder struct {
	user User
}

// Kind sets the context kind (defaults to "user").
func (b *UserBuilder) Kind(kind string) *UserBuilder {
	b.user.kind = kind
	return b
}

// Secondary sets the secondary key used to refine bucketing for experiments spanning cohorts.
func (b *UserBuilder) Secondary(value string) *UserBuilder {
	b.user.secondary = ldvalue.String(value)
	return b
}

// Anonymous marks the user as anonymous, excluding it from the dashboard's known-user list.
func (b *UserBuilder) Anonymous(value bool) *UserBuilder {
	b.user.anonymous = value
	return b
}

// Custom sets a custom or built-in attribute by name.
func (b *UserBuilder) Custom(name string, value ldvalue.Value) *UserBuilder {
	if b.user.attrs == nil {
		b.user.attrs = make(map[string]ldvalue.Value)
	}
	b.user.attrs[name] = value
	return b
}

// Private marks the given attribute names as private: event formatting will redact them from any
// outgoing analytics events, unless the host configures AllAttributesPrivate instead.
func (b *UserBuilder) Private(names ...string) *UserBuilder {
	b.user.privateAttrs = append(b.user.privateAttrs, names...)
	return b
}

// Build finalizes the User.
func (b *UserBuilder) Build() User {
	return b.user
}

// Key returns the user's unique key.
func (u User) Key() string { return u.key }

// Kind returns the context kind, defaulting to "user".
func (u User) Kind() string {
	if u.kind == "" {
		return "user"
	}
	return u.kind
}

// Anonymous returns true if the user is marked anonymous.
func (u User) Anonymous() bool { return u.anonymous }

// Secondary returns the secondary bucketing key, if any.
func (u User) Secondary() (ldvalue.Value, bool) {
	if u.secondary.IsNull() {
		return ldvalue.Null(), false
	}
	return u.secondary, true
}

// builtins are the built-in user attribute names. They have no dedicated accessors: like custom
// attributes they are set through UserBuilder.Custom and stored in the generic attribute map.
var builtins = map[string]bool{
	"ip": true, "country": true, "email": true, "firstName": true,
	"lastName": true, "avatar": true, "name": true,
}

// GetAttribute returns the named attribute's value, or a null Value if the user does not have it.
// "key" and "secondary" are handled specially since they are not stored in the attribute map.
func (u User) GetAttribute(name string) (ldvalue.Value, bool) {
	switch name {
	case "key":
		return ldvalue.String(u.key), true
	case "secondary":
		return u.Secondary()
	case "anonymous":
		return ldvalue.Bool(u.anonymous), true
	}
	if u.attrs == nil {
		return ldvalue.Null(), false
	}
	v, ok := u.attrs[name]
	return v, ok
}

// CustomAttributeNames returns the names of every custom attribute set on the user, in
// unspecified order. Built-in attributes (key, secondary, anonymous) are not included.
func (u User) CustomAttributeNames() []string {
	names := make([]string, 0, len(u.attrs))
	for name := range u.attrs {
		names = append(names, name)
	}
	return names
}

// PrivateAttributeNames returns the attribute names this user marked private via
// UserBuilder.Private. The evaluation core itself never redacts attributes; that is an
// event-pipeline concern handled when formatting outbound analytics events.
func (u User) PrivateAttributeNames() []string {
	return u.privateAttrs
}
