// Package catalog resolves Wallpaper Engine workshop items and the folder
// tree declared in its config.json into an in-memory, TTL-cached snapshot.
package catalog
