package redis

import "github.com/MrSnakeDoc/openbinder/internal/domain"

const (
	// KeyPrefix is shared by every OpenBinder key.
	KeyPrefix = "ob:"
	// KeyPrefixUsers scopes all per-user documents: ob:users:{uid}:...
	KeyPrefixUsers = KeyPrefix + "users:"
	// KeyPrefixSession is the prefix for session tokens.
	KeyPrefixSession = KeyPrefix + "session:"
	// KeyPrefixAuthState is the prefix for pending sign-in states.
	KeyPrefixAuthState = KeyPrefix + "oauth-state:"
	// KeyPrefixCache is the prefix for offline cache hashes.
	KeyPrefixCache = KeyPrefix + "cache:"
	// KeyCaches is the set of all offline cache names.
	KeyCaches = KeyPrefix + "caches"
	// ChannelAuthState carries auth-state transitions between instances.
	ChannelAuthState = KeyPrefix + "auth-state"
)

// CollectionKey returns the root of a user's namespace: ob:users:{uid}:bookmark_secret
func CollectionKey(uid string, ns domain.Namespace) string {
	return KeyPrefixUsers + uid + ":" + ns.Collection()
}

// FoldersKey returns the sorted set of folder ids, scored by creation time.
func FoldersKey(uid string, ns domain.Namespace) string {
	return CollectionKey(uid, ns) + ":folders"
}

// FolderNamesKey returns the hash mapping folder name -> folder id.
func FolderNamesKey(uid string, ns domain.Namespace) string {
	return CollectionKey(uid, ns) + ":names"
}

// FolderKey returns the key holding one folder document.
func FolderKey(uid string, ns domain.Namespace, folderID string) string {
	return CollectionKey(uid, ns) + ":folder:" + folderID
}

// LinksKey returns the sorted set of bookmark ids of a folder, scored by creation time.
func LinksKey(uid string, ns domain.Namespace, folderID string) string {
	return FolderKey(uid, ns, folderID) + ":links"
}

// LinkKey returns the key holding one bookmark document.
func LinkKey(uid string, ns domain.Namespace, folderID, bookmarkID string) string {
	return FolderKey(uid, ns, folderID) + ":link:" + bookmarkID
}

// PrefsKey returns the hash of view preferences for a user.
func PrefsKey(uid string) string {
	return KeyPrefixUsers + uid + ":prefs"
}

// SessionKey returns the key of a session token.
func SessionKey(token string) string {
	return KeyPrefixSession + token
}

// AuthStateKey returns the key of a pending sign-in state.
func AuthStateKey(state string) string {
	return KeyPrefixAuthState + state
}

// CacheKey returns the hash holding the entries of one offline cache.
func CacheKey(name string) string {
	return KeyPrefixCache + name
}
