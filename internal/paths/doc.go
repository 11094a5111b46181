// Provides platform-appropriate default locations for kiln.
//
// Paths follow XDG conventions on Linux and platform-native conventions on
// macOS and Windows, with "kiln" as the subdirectory under each base path.
// Build work areas live under the cache directory because they are disposable;
// assembled images live under the data directory.
package paths
