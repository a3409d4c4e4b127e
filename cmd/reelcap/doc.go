// Command reelcap records canvas and video surfaces from web pages and
// delivers them as webm, mp4, or gif files.
package main
