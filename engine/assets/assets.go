package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/cartofx/engine/assets/loaders"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Resolves shader sources and scene images through registered loaders, and
 * optionally watches a shader directory to hot reload programs.
 */
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewAssetManager reads shader sources from the given file system.
func NewAssetManager(shaderSources fs.FS) *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
	}
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{Sources: shaderSources})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	return am
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

/**
 * @brief Loads an asset using the loader registered for its type. Shaders are named
 * by stage file ("fxaa.frag"), images by file path.
 */
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	am.mutex.RLock()
	loader, ok := am.loaders[resourceType]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}

	res, err := loader.Load(name, resourceType, params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[res.FullPath] = AssetInfo{
		Path:       res.FullPath,
		Type:       resourceType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()
	return res, nil
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	am.mutex.RLock()
	loader, ok := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !ok {
		return nil
	}
	return loader.Unload(asset)
}

// Loaded returns what is known about a previously loaded asset.
func (am *AssetManager) Loaded(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

/**
 * @brief Starts watching dir and its sub-directories. Every write to a fragment
 * program fires EVENT_CODE_SHADER_CHANGED with the program name.
 */
func (am *AssetManager) Watch(dir string) error {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if am.fsnotify != nil {
		return errors.New("asset manager is already watching")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = w
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})
	if err := am.watchRecursive(dir, false); err != nil {
		w.Close()
		am.fsnotify = nil
		return err
	}
	go am.start()
	core.LogInfo("watching '%s' for shader changes", dir)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	watching := am.fsnotify != nil
	am.mutex.Unlock()

	if watching {
		close(am.done)
		<-am.stopped
	}
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() && e.Op&fsnotify.Create != 0 {
				if err := am.watchRecursive(e.Name, false); err != nil {
					core.LogWarn("unable to watch '%s': %s", e.Name, err)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&fsnotify.Remove != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		if unWatch {
			return am.fsnotify.Remove(walkPath)
		}
		return am.fsnotify.Add(walkPath)
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	name, ok := ProgramName(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       metadata.ResourceTypeShader,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()

	core.LogDebug("shader source '%s' changed", path)
	ctx := core.EventContext{}
	ctx.Data.C[0] = name
	core.EventFire(core.EVENT_CODE_SHADER_CHANGED, am, ctx)
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

// ProgramName maps a fragment source file ("dir/fxaa.frag.wgsl") to its program
// name ("fxaa"). Vertex sources and other files are not programs.
func ProgramName(path string) (string, bool) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, ".frag"+loaders.SHADER_SOURCE_EXTENSION)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case loaders.SHADER_SOURCE_EXTENSION:
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".webp", ".tga":
		return metadata.ResourceTypeImage
	default:
		return metadata.ResourceTypeNone
	}
}

// IsImage reports whether path has an extension the image loader can decode.
func IsImage(path string) bool {
	return determineAssetType(path) == metadata.ResourceTypeImage
}
